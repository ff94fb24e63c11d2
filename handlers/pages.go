package handlers

import (
	"bytes"
	"html/template"
	"log"

	"github.com/gofiber/fiber/v2"
)

var cloakTemplate = template.Must(template.New("cloak").Parse(`<!DOCTYPE html>
<html><head><title>{{.Title}} Search</title></head>
<body style="margin:0;height:100vh;background:#fff">
  <iframe id="cloak" src="about:blank" style="width:100%;height:100%;border:none" sandbox="allow-scripts allow-same-origin allow-forms allow-popups allow-modals allow-pointer-lock allow-top-navigation" allowfullscreen></iframe>
  <script>
    setTimeout(function () {
      document.getElementById('cloak').src = {{.Target}};
      document.title = {{.Title}};
    }, 500);
  </script>
</body></html>
`))

var errorTemplate = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html><head><title>{{.Title}}</title></head>
<body style="text-align:center;padding:50px">
  <h1>{{.Heading}}</h1>
  {{- if .Message}}
  <p>{{.Message}}</p>
  {{- end}}
</body></html>
`))

// Cloak is a Fiber handler that serves a landing page whose tab looks like a
// search engine and which loads target in a full-page frame.
func Cloak(title, target string) fiber.Handler {
	var buf bytes.Buffer
	err := cloakTemplate.Execute(&buf, struct{ Title, Target string }{title, target})
	if err != nil {
		panic(err)
	}
	page := buf.Bytes()

	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.Send(page)
	}
}

// NotFound is the fallback Fiber handler for unmatched routes.
func NotFound(c *fiber.Ctx) error {
	return sendPage(c, fiber.StatusNotFound, "404", "Not Found", "")
}

func sendError(c *fiber.Ctx, status int, heading, message string) error {
	return sendPage(c, status, "Error", heading, message)
}

func sendPage(c *fiber.Ctx, status int, title, heading, message string) error {
	var buf bytes.Buffer
	err := errorTemplate.Execute(&buf, struct{ Title, Heading, Message string }{title, heading, message})
	if err != nil {
		log.Printf("ERROR: Could not render error page: %v", err)
		return c.Status(status).SendString(heading)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Status(status).Send(buf.Bytes())
}
