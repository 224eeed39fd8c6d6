package wattle

// Version is the release version of the engine. It is overridden at build
// time via -ldflags "-X github.com/wattlebot/wattle.Version=...".
var Version = "dev"
