// Package prompt builds the message sequences sent to council models: the
// stage-1 opinion request, the anonymized stage-2 review request, and the
// stage-3 chairman synthesis request.
package prompt

// stage1SystemDirective is the system message for councilor opinion calls.
const stage1SystemDirective = `Answer the user's question directly and concisely.`

// stage2Header opens the review prompt. %s = original user query.
const stage2Header = `You are reviewing responses from other AI models to the following user query:

USER QUERY: %s

Below are the responses from other models (anonymized as Response A, Response B, etc.):
`

// stage2Task closes the review prompt with the required output format.
const stage2Task = `
Your task is to:
1. Evaluate each response for accuracy, completeness, clarity, and usefulness
2. Rank them from best to worst
3. Provide brief reasoning for each ranking

Output your ranking as plain text, one line per response, best first, in exactly this format:

Rank 1: <letter> — <brief reasoning>
Rank 2: <letter> — <brief reasoning>

Use one line for every response above. If one of the responses is your own, omit its line from the ranking.

Be objective and critical. Focus on factual accuracy and helpfulness.`

// stage3SystemDirective is the system message for the chairman call.
const stage3SystemDirective = `You are the Chairman of the LLM Council. Your role is to synthesize the responses from multiple AI models into a single, comprehensive, accurate answer.`

// stage3QueryHeader opens the chairman context. %s = original user query.
const stage3QueryHeader = "Original user query: %s\n\n"

// Section banners of the chairman context.
const (
	stage3ResponsesBanner = "===== COUNCIL MEMBER RESPONSES =====\n\n"
	stage3ReviewsBanner   = "\n===== PEER REVIEWS AND RANKINGS =====\n\n"
)

// stage3NoReviews replaces the ranking summary when no review parsed.
const stage3NoReviews = "(no usable peer reviews)\n"

// stage3Task closes the chairman prompt.
const stage3Task = `
Your task:
1. Analyze all the responses provided by the council members
2. Consider the peer reviews and rankings if provided
3. Identify common themes and agreements
4. Reconcile any disagreements or contradictions
5. Produce a final, authoritative answer that represents the best synthesis of all perspectives

Provide a clear, well-structured response that directly answers the user's query. Focus on accuracy, completeness, and clarity. Do not mention the internal council process - just provide the final answer as if it came from a single, highly knowledgeable source.`
