package main

import "github.com/Scalingo/sclng-developer-report/cmd"

func main() {
	cmd.Execute()
}
