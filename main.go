// The main package for the webintel executable.
package main

import "github.com/JakeFAU/webintel/cmd"

func main() {
	cmd.Execute()
}
