package main

import (
	"github.com/meetline/meetline/internal/app"
)

func main() {
	app.Main()
}
