/*
Package domain contains the core types shared by the chain engine and the dispatcher.

It defines what a chain is (ChainID), what flows through it (Message), and the unit
of protocol logic that consumes those messages (Step). The package has no I/O and no
knowledge of how chains are scheduled; protocol code implements Steps and Messages
against these contracts and the dispatch layer hosts them.

# Key Entities

  - ChainID: 64-bit chain number plus the internal/external flag.
  - Message: an inbound protocol event addressed to a chain.
  - Step: one state of a chain's state machine.
  - Result: the explicit transition value returned by Step.Receive.
  - Table: a dispatch table mapping message types to handlers.
*/
package domain
