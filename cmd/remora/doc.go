// Command remora controls Transmission daemons from the terminal.
//
// Without a subcommand it opens the interactive dashboard. The scripting
// commands (list, show, add, start, stop, verify, remove, session,
// free-space) connect once, print a table or --json output, and exit. trust
// and login manage pinned certificates and stored passwords; logs tails
// remora's own log file.
package main
