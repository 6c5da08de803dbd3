package agent

// routeSystemPrompt drives the per-turn routing decision. The model
// either calls the retrieval tool or answers directly; when uncertain
// it is instructed to retrieve.
const routeSystemPrompt = `You are an assistant that answers questions about the documents in the user's folder.

You have one tool, retrieve_documents, which searches those documents for relevant passages.

Rules:
- For ANY question about document content, facts, figures, or topics, call retrieve_documents with a short, focused search query.
- Answer directly only for greetings, thanks, and small talk that need no document knowledge.
- If you are unsure whether documents are needed, call retrieve_documents.`

// answerSystemPrompt frames the final answer around the retrieved
// passages. The context block is empty when retrieval found nothing or
// failed; the model must then say so instead of inventing sources.
const answerSystemPrompt = `You are an assistant that answers questions about the documents in the user's folder.

Use the retrieved passages below to answer. Quote or paraphrase them faithfully. If the passages are empty or do not cover the question, say that no supporting documents were found, then answer as best you can from the conversation alone.

Retrieved passages:
%s`
