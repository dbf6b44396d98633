package repository

import "strconv"

// Key patterns shared by every repository. All durable state lives in the KV
// store under these prefixes.
func userKey(id string) string { return "user:" + id }

func githubKey(githubID int64) string { return "github:" + strconv.FormatInt(githubID, 10) }

func sessionKey(id string) string { return "session:" + id }

func conversationKey(id string) string { return "conversation:" + id }

func messageKey(id string) string { return "message:" + id }

func conversationMsgs(conversationID string) string {
	return "conversation_messages:" + conversationID
}

func userConversations(userID string) string {
	return "user_conversations:" + userID
}

const userIndexKey = "user:index"
