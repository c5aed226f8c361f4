package main

import "backoffice/internal/app/server"

func main() {
	server.Run()
}
