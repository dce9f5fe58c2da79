// Pattern, blacklist, and heuristic spam classification of single chat messages.
//
// Classification is a pure function of the message, the chat policy, and the merged blacklist; no I/O is performed.
package classify
