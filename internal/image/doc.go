// Package image validates component images submitted with load requests and
// extracts the declared component name.
//
// A component image is a small HCL manifest:
//
//	module "wlan-driver" {
//	  version     = "2.1"
//	  description = "Wireless LAN"
//	  vermagic    = "lazyinit-1"
//	}
//
// Parsing is purely structural. The parser never looks the name up anywhere;
// that is the coordinator's job.
package image
