// Package terminal implements the interactive command-line mode for the
// Parley agent.
//
// The terminal reads user input line by line, streams the model's text
// and reasoning to stdout as it arrives, and renders tool activity
// between separator borders. Clarification requests from the agent are
// resolved inline by prompting the user.
//
// # Usage
//
//	a := agent.New(cfg, sess, registry, client)
//	term := terminal.New(a)
//	err := term.Run(ctx, initialPrompt)
//
// # Slash commands
//
//   - /quit, /exit, /q: end the session
//   - /reset: clear the conversation history
//   - /compact: summarize and compact the conversation now
//   - /voice: toggle spoken responses (requires a speech command)
//
// Ctrl-C during a turn interrupts the model without ending the session;
// whatever the model produced before the interrupt stays in the history.
package terminal
