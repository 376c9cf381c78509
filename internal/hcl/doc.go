// Package hcl provides the concrete HCL implementation of the config.Loader
// interface. It is responsible for file parsing, HCL-to-model translation and
// CTY-to-Go data binding.
//
// A policy file looks like this; any number of files and blocks are merged:
//
//	policy {
//	  eligible       = ["wlan", "camera", "gpu"]
//	  already_active = ["ufs_core"]
//	  excluded       = ["touchscreen"]
//	  tail           = ["gpu"]
//	}
//
//	diagnostics {
//	  debug            = true
//	  pending_interval = "5s"
//	}
package hcl
