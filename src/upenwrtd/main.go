// upenwrtd builds OpenWrt sysupgrade images that keep a router's installed packages.
package main

import (
	"github.com/bitswalk/upenwrt/src/upenwrtd/core"
)

func main() {
	core.Execute()
}
