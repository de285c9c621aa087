// Package main runs the bridge forwarding Vicon frames from one source to the
// configured publishers.
package main

import (
	"go.viam.com/utils"

	"github.com/pam-robotics/vicontransformer/bridge"
	"github.com/pam-robotics/vicontransformer/logging"
)

var logger = logging.NewLogger("bridge")

func main() {
	utils.ContextualMain(bridge.RunServer, logger)
}
