package images

import "github.com/bitswalk/upenwrt/src/upenwrtd/build"

// Handler serves image builds and package lists
type Handler struct {
	manager *build.Manager
}

// Config contains configuration for the images handler
type Config struct {
	BuildManager *build.Manager
}
