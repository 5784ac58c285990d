// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package commands defines the emtf-tree CLI.
//
// Commands
//
//   - version        Print build information
//   - inspect FILE   List the trees of a ROOT file with their branches
//   - validate       Check a job file
//   - scan           Run a job over a list of files
//   - queue push     Add files to the Redis work queue
//   - queue close    Tell the workers the queue is complete
//   - worker         Run a job over files taken from the Redis queue
//   - watch DIR      Run a job over files as they appear in DIR
//   - history [ID]   List past runs or show one
//
// Every command reads the job from --config, then EMTF_TREE_* variables,
// then its own flags. The long running commands serve /healthz, /metrics
// and /status when --listen is set.
package commands
