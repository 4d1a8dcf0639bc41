// upenwrtctl is the command-line client for upenwrtd.
package main

import "github.com/bitswalk/upenwrt/src/upenwrtctl/internal/cmd"

func main() {
	cmd.Execute()
}
