package main

import (
	"fmt"
	"os"
	"runtime/debug"
)

func main() {
	cfg := parseArgs(os.Args[1:])

	switch cfg.mode {
	case runMode:
		runMain(cfg.Run)
	case romInfosMode:
		checkf(romInfos(os.Stdout, cfg.RomInfos.RomPaths), "failed to read rom infos")
	case stateInfoMode:
		checkf(stateInfo(os.Stdout, cfg.StateInfo.StatePath, cfg.StateInfo.Blobs), "failed to read state")
	case versionMode:
		fmt.Println("nescore", version())
	}
}

func version() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi.Main.Version == "" {
		return "(devel)"
	}
	return bi.Main.Version
}
