// Command barnhunt renders Barn Hunt course maps to PDF with Inkscape.
package main

func main() {
	Execute()
}
