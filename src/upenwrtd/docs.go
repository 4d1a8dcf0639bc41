// Package main upenwrtd API
//
// @title           upenwrtd API
// @version         1.0
// @description     Builds OpenWrt sysupgrade images that keep the packages installed on a router.
//
// @host            localhost:8000
// @BasePath        /
// @schemes         http https
package main
