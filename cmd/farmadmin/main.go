package main

import "github.com/jrsteele09/go-auth-client/cmd/farmadmin/cmd"

func main() {
	cmd.Execute()
}
