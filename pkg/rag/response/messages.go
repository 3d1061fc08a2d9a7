package response

// Fixed answers returned without a model call
const (
	UnsupportedMessage = "I'm sorry, but I don't understand your question. Could you please rephrase it or ask something about our financial products?"

	NoResultsMessage = "I couldn't find any matching products for your question in our catalog. Try asking about a specific institution, product category, rate or fee."

	ApologyMessage = "I'm sorry, something went wrong while preparing your answer. Please try again in a moment."

	ProductNotFoundMessage = "I couldn't find that product in our catalog. It may have been removed or is no longer offered."
)
