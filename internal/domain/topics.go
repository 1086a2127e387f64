package domain

// Topics are the wire contract between publishers and services. Every
// request-style topic has exactly one subscriber.
const (
	TopicElementCreate   = "api.craft.elements.create"
	TopicElementFetch    = "api.craft.elements.fetch"
	TopicElementGenerate = "api.craft.elements.generate"
	TopicElementListBase = "api.craft.elements.list_base"

	TopicRecipeCreate = "api.craft.recipes.create"
	TopicRecipeFetch  = "api.craft.recipes.fetch"

	TopicProgressCheck  = "api.craft.progress.check"
	TopicProgressCreate = "api.craft.progress.create"
	TopicProgressFetch  = "api.craft.progress.fetch"
	TopicProgressList   = "api.craft.progress.list"

	TopicUserUpsert = "api.telegram.users.upsert"
	TopicUserFetch  = "api.telegram.users.fetch"

	TopicChatUpsert = "api.telegram.chats.upsert"
	TopicChatFetch  = "api.telegram.chats.fetch"

	TopicMembershipUpsert = "api.telegram.memberships.upsert"
	TopicMembershipRemove = "api.telegram.memberships.remove"

	TopicMessageSave  = "api.telegram.messages.save"
	TopicMessagePurge = "api.telegram.messages.purge"

	TopicPollSave   = "api.telegram.polls.save"
	TopicPollAnswer = "api.telegram.polls.answer"
)

// Broadcast topics may have any number of subscribers.
const (
	TopicElementDiscovered = "craft.element.discovered"
)
