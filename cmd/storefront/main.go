package main

import "github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/cmd"

func main() {
	cmd.Execute()
}
