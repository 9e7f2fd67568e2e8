package main

import "siteguard/cmd"

// @title siteguard API
// @version 1.0
// @description Construction site PPE compliance monitoring: video feeds, analysis runs and alerts.
// @BasePath /
func main() {
	cmd.Execute()
}
