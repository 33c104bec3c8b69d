/*
Package ports defines the driven ports (interfaces) of the dispatch core.

These interfaces decouple the dispatcher from storage backends so chain
diagnostics can outlive the chains they describe.

# Key Interfaces

  - HistoryStore: archives the transition history of terminated or evicted chains.
*/
package ports
