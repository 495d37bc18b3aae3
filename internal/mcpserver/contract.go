package mcpserver

// DocumentLayout describes the nested JSON shape extract_key reads.
const DocumentLayout = `# keyhash Document Layout

extract_key reads a UTF-8 JSON document and follows one fixed path per key.

## Structure

` + "```" + `json
{
  "A": {
    "<key>": {
      "<any name>": {
        "maindata": [
          { "Info": "text to hash" }
        ]
      }
    }
  }
}
` + "```" + `

## Rules

1. The top-level value is an object with an object under ` + "`" + `"A"` + "`" + `.
2. ` + "`" + `A[key]` + "`" + ` is an object. Only its **first** member, in document order, is used.
3. That member holds ` + "`" + `"maindata"` + "`" + `, a non-empty array. Only element 0 is used.
4. Element 0 holds ` + "`" + `"Info"` + "`" + `, a string.
5. The digest is SHA-256 (or BLAKE3 when configured) of the UTF-8 bytes of Info,
   standard base64 with padding: always 44 characters.

## Output

The digest is written, without a trailing newline, to
` + "`" + `{key}_hashed_{unix seconds}.txt` + "`" + ` in the artifact directory.
Keys containing ` + "`" + `/` + "`" + `, ` + "`" + `\` + "`" + ` or NUL cannot name a file and are rejected.

## Errors

- source unavailable: the document cannot be read.
- malformed document: not JSON, not UTF-8, or no object under "A".
- unknown key: "A" has no member named key.
- malformed record: the path below A[key] is broken.
- write failure: the artifact file could not be written.
`
