// Command domainsearchctl is the thin CLI variant (spec.md §1: "a thin CLI
// variant exists but is not part of the core"). It talks to a running
// domainsearchd over the RPC surface in §6 — it holds no job state of its
// own — the way shashidhxr-queueCTL's cmd package wraps its queue's
// operations as cobra subcommands.
package main

import "github.com/groveplace/domainsearch/cmd/domainsearchctl/cmd"

func main() {
	cmd.Execute()
}
