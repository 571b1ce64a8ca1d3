package main

import "github.com/Manu343726/rspdiff/cmd"

func main() {
	cmd.Execute()
}
