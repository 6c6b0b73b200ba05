// @title           Grafeo API
// @version         1.0
// @description     Identity and session lifecycle for the Grafeo indicator tracker.
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import "github.com/grafeo/grafeo-api/cmd/grafeo/cmd"

func main() {
	cmd.Execute()
}
