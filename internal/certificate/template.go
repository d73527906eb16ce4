package certificate

import "html/template"

var certificateTemplate = template.Must(template.New("certificate").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>SecureWipe Certificate — {{.JobID}}</title>
<style>
  body { font-family: Helvetica, Arial, sans-serif; margin: 2.5rem; color: #1a1a1a; }
  h1 { font-size: 1.6rem; margin-bottom: 0; }
  h1 small { font-size: 1rem; font-weight: normal; color: #555; margin-left: 1rem; }
  h2 { font-size: 1rem; border-bottom: 1px solid #ccc; padding-bottom: .25rem; margin-top: 1.5rem; }
  dl { display: grid; grid-template-columns: 10rem 1fr; row-gap: .25rem; }
  dt { color: #555; }
  dd { margin: 0; }
  .signature { font-family: monospace; font-size: .75rem; word-break: break-all; }
  footer { margin-top: 2rem; font-size: .8rem; font-style: italic; color: #555; }
</style>
</head>
<body>
<h1>SecureWipe <small>Secure Data Wipe Certificate</small></h1>

<h2>Device Information</h2>
<dl>
  <dt>Platform</dt><dd>{{if .Platform}}{{.Platform}}{{else}}-{{end}}</dd>
  <dt>Model</dt><dd>{{if .Model}}{{.Model}}{{else}}-{{end}}</dd>
  <dt>Serial</dt><dd>{{if .Serial}}{{.Serial}}{{else}}-{{end}}</dd>
</dl>

<h2>Operator / Contact</h2>
<dl>
  <dt>Operator</dt><dd>{{if .Operator}}{{.Operator}}{{else}}-{{end}}</dd>
  <dt>Email</dt><dd>{{if .Email}}{{.Email}}{{else}}-{{end}}</dd>
</dl>

<h2>Wipe Details</h2>
<dl>
  <dt>Method</dt><dd>{{.Method}}</dd>
  <dt>NIST Category</dt><dd>{{.NISTCategory}}</dd>
  <dt>Job ID</dt><dd>{{.JobID}}</dd>
</dl>

<h2>Evidence (sample)</h2>
{{if .Evidence}}
<dl>
  <dt>Cmd</dt><dd><code>{{.Evidence.Cmd}}</code></dd>
  <dt>Out</dt><dd><code>{{.Evidence.Out}}</code></dd>
</dl>
{{else}}
<p>No evidence captured.</p>
{{end}}

<h2>Digital Signature</h2>
<p class="signature">{{.Signature}}</p>
<dl>
  <dt>Algorithm</dt><dd>{{.Algorithm}}</dd>
  <dt>Verify</dt><dd>{{.VerifyURL}}</dd>
</dl>

<footer>This certificate is digitally signed and verifiable via the SecureWipe verifier.</footer>
</body>
</html>
`))
