package llm

const extractConciseDirective = `Keep each fact to a single short sentence. Merge near-duplicates. Skip filler and pleasantries.`

const extractVerboseDirective = `Capture every distinct fact, including secondary details, with enough context to stand alone.`

const extractPrompt = `You are a memory extraction system. Analyze the following content and extract distinct facts.

For each fact, determine:
- content: a clear, self-contained statement
- fact_type: one of "experience", "world", "opinion", "observation"
- confidence: 0.0-1.0, how certain the content supports the fact
- entities: named people, organizations, places, or concepts mentioned, each as {"name": ..., "entity_type": "person|organization|place|concept|other"}
- tags: short lowercase topic labels
- causal_relations: when a fact is caused by an EARLIER fact in your output, emit {"target_index": <index of the earlier fact>, "relation_type": "caused_by", "strength": 0.0-1.0}. Never reference the fact itself or a later fact.
- occurred_start / occurred_end: ISO timestamps when the content says when the fact happened; omit otherwise

%s

Respond ONLY with a JSON array. No markdown, no explanation. Example:
[{"content":"Alice joined Acme Corp in 2023","fact_type":"world","confidence":0.9,"entities":[{"name":"Alice","entity_type":"person"},{"name":"Acme Corp","entity_type":"organization"}],"tags":["employment"]}]

If no facts can be extracted, respond with an empty array: []

Content:
%s`

const gistPrompt = `Compress the following text into a single sentence of at most 280 characters. Preserve names, numbers, and outcomes. Respond with ONLY the sentence, no quotes, no explanation.

Text:
%s`
