package httpapi

import "html"

// generateLoginPage renders the login and consent form. When the user is
// already authenticated only the consent step remains, so the credential
// fields are dropped and submitting the form is the approval act.
func generateLoginPage(realm string, authenticated bool) string {
	displayRealm := html.EscapeString(realm)
	if displayRealm == "" {
		displayRealm = "an unknown site"
	}

	fields := `
            <div class="form-group">
                <label for="username">Username</label>
                <input type="text" id="username" name="username" autofocus required>
            </div>
            <div class="form-group">
                <label for="password">Password</label>
                <input type="password" id="password" name="password" required>
            </div>
            <button type="submit">Sign in &amp; Continue</button>`
	if authenticated {
		fields = `
            <button type="submit">Continue to ` + displayRealm + `</button>`
	}

	return `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Sign in - OpenID Provider</title>
    <style>
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: 'Segoe UI', system-ui, sans-serif;
            background: linear-gradient(135deg, #1a1a2e 0%, #16213e 100%);
            min-height: 100vh;
            display: flex;
            align-items: center;
            justify-content: center;
            color: #e4e4e7;
        }
        .container {
            background: rgba(255, 255, 255, 0.05);
            border: 1px solid rgba(255, 255, 255, 0.1);
            border-radius: 16px;
            padding: 40px;
            width: 100%;
            max-width: 420px;
        }
        .logo { text-align: center; margin-bottom: 30px; }
        .logo h1 { font-size: 24px; font-weight: 600; color: #fff; }
        .realm-info {
            background: rgba(99, 102, 241, 0.1);
            border: 1px solid rgba(99, 102, 241, 0.2);
            border-radius: 8px;
            padding: 16px;
            margin-bottom: 24px;
            text-align: center;
            font-size: 14px;
            color: #a5b4fc;
        }
        .realm-info strong { color: #fff; }
        .form-group { margin-bottom: 20px; }
        label {
            display: block;
            font-size: 14px;
            font-weight: 500;
            margin-bottom: 8px;
            color: #d4d4d8;
        }
        input[type="text"], input[type="password"] {
            width: 100%;
            padding: 12px 16px;
            border: 1px solid rgba(255, 255, 255, 0.1);
            border-radius: 8px;
            background: rgba(0, 0, 0, 0.2);
            color: #fff;
            font-size: 16px;
        }
        input:focus {
            outline: none;
            border-color: #6366f1;
        }
        button {
            width: 100%;
            padding: 14px;
            background: linear-gradient(135deg, #6366f1 0%, #8b5cf6 100%);
            border: none;
            border-radius: 8px;
            color: #fff;
            font-size: 16px;
            font-weight: 600;
            cursor: pointer;
        }
        .error {
            background: rgba(239, 68, 68, 0.1);
            border: 1px solid rgba(239, 68, 68, 0.2);
            color: #fca5a5;
            padding: 12px;
            border-radius: 8px;
            margin-bottom: 20px;
            font-size: 14px;
        }
    </style>
</head>
<body>
    <div class="container">
        <div class="logo">
            <h1>OpenID Provider</h1>
        </div>

        <div class="realm-info">
            <strong>` + displayRealm + `</strong> is asking to confirm your identity
        </div>

        <!-- ERROR -->

        <form method="POST" action="/openid/login">` + fields + `
        </form>
    </div>
</body>
</html>`
}

// generateIndexPage renders the provider landing page served at the root.
func generateIndexPage(entryURL string) string {
	return `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>OpenID Provider</title>
    <style>
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: 'Segoe UI', system-ui, sans-serif;
            background: linear-gradient(135deg, #1a1a2e 0%, #16213e 100%);
            min-height: 100vh;
            display: flex;
            align-items: center;
            justify-content: center;
            color: #e4e4e7;
        }
        .container {
            background: rgba(255, 255, 255, 0.05);
            border: 1px solid rgba(255, 255, 255, 0.1);
            border-radius: 16px;
            padding: 40px;
            width: 100%;
            max-width: 420px;
            text-align: center;
        }
        h1 { font-size: 24px; font-weight: 600; color: #fff; margin-bottom: 16px; }
        p { font-size: 14px; color: #a1a1aa; margin-bottom: 8px; }
        code {
            display: inline-block;
            background: rgba(0, 0, 0, 0.2);
            border-radius: 6px;
            padding: 4px 10px;
            color: #a5b4fc;
            font-size: 13px;
        }
    </style>
</head>
<body>
    <div class="container">
        <h1>OpenID Provider</h1>
        <p>This server is an OpenID 2.0 identity provider.</p>
        <p>Endpoint: <code>` + html.EscapeString(entryURL) + `</code></p>
    </div>
</body>
</html>`
}
