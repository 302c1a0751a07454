package miner

import "errors"

// ErrAlreadyRunning is returned by Start when a mining run is already
// active (spec §4.8 start_mining).
var ErrAlreadyRunning = errors.New("miner: already running")
