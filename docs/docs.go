// Package docs embeds the OpenAPI description served next to the Swagger UI.
package docs

import _ "embed"

//go:embed swagger.yml
var Swagger []byte
