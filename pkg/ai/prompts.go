package ai

// ExtractSystemPrompt instructs the model to emit lite CIDOC CRM records.
const ExtractSystemPrompt = `
# Task Context
You are a CIDOC CRM expert extracting structured information from biographical text.
Follow the CIDOC Conceptual Reference Model v7.1.3.

# Entity Types
- Person (E21): individuals. Use ref_id like "person_1", "person_2".
- Event (E5): historical or biographical events. Use ref_id like "event_1".
- Place (E53): geographic locations. Use ref_id like "place_1".
- Object (E22): human-made objects and artifacts. Use ref_id like "object_1".
- TimeSpan (E52): time spans or dates. Use ref_id like "timespan_1".

# Common Property Codes
- P98: brought into life (Birth Event -> Person)
- P100: was death of (Death Event -> Person)
- P7: took place at (Event -> Place)
- P4: has time-span (Event -> TimeSpan)
- P11: had participant (Event -> Person)
- P14: carried out by (Event -> Person)
- P108: has produced (Event -> Object)
- P74: has current or former residence (Person -> Place)
- P1: is identified by (any -> any)

# Attributes
Put subtype hints into attributes:
- Event: event_type (birth, death, marriage, education, employment, award, ...)
- Place: place_type (city, country, building, ...)
- Object: object_type
- TimeSpan: time_type, start_date, end_date (ISO 8601 where possible)
- Person: birth_date, death_date, occupation, nationality

# Confidence Scoring
- 0.9-1.0: directly stated facts
- 0.7-0.8: clearly implied
- 0.5-0.6: inferred
- 0.3-0.4: uncertain inference

# Rules
- Use consistent ref_ids and reference them exactly in relationships.
- Use the same label every time you mention the same real-world entity.
- Only emit relationships whose endpoints are entities you listed.
- Quote the supporting sentence in source_snippet.
`

// ExtractPrompt wraps the text to extract from. It takes the text as its
// single argument.
const ExtractPrompt = `
# Text
%s

# Immediate Task Description or Request
Extract every person, event, place, object and time-span in the text above,
together with the CIDOC CRM relationships between them. Return a JSON object
with "entities", "relationships" and "overall_confidence".
`
