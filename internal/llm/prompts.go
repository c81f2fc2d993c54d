package llm

const confirmPrompt = `You are a music expert helping to decide whether two catalog entries describe the same music.

You get two descriptions, A and B. A comes from a streaming playlist (artist - title), B comes from a
record database or video site (artist - title, maybe with a year).

Respond with a JSON object in this exact format:
{
  "same": true/false,
  "confidence": 0.85,
  "reasoning": "Brief explanation of the decision"
}

Rules:
1. confidence should be between 0.0 and 1.0
2. Set "same" to true if B is the same song, or the release that contains it, by the same artist
3. Reissues, remasters and different formats of the same release count as the same
4. Covers, karaoke versions, tributes and different artists with the same title are NOT the same
5. Transliterations and translations of names count as the same
6. Be conservative - if unclear, set to false

Respond with valid JSON only.`

const translatePrompt = `You are a music expert helping to match song titles and artist names across catalogs.

Translate the user's text into English. If it is a proper name (artist, band, label), transliterate
it into Latin script the way it is usually written in Western catalogs instead of translating it.

Respond with a JSON object in this exact format:
{
  "translation": "English text"
}

Rules:
1. Return only the translated title or name, without quotes, explanations or extra words
2. Keep numbers and punctuation
3. If the text is already English, return it unchanged

Respond with valid JSON only.`
