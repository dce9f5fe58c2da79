// Implementations of enforce.ChatPlatform.
//
// HTTPPlatform talks to a Bot API style HTTP gateway. LogPlatform only logs what would have happened, for dry runs.
package platform
