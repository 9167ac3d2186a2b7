package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// loginPageHandler serves the login form. The edge gate has already
// bounced authenticated callers to /dashboard before this runs.
func loginPageHandler(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, loginPageHTML)
}

const loginPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Warehouse Dashboard - Login</title>
    <style>
        body { font-family: -apple-system, sans-serif; background: #f4f5f7; display: flex; justify-content: center; align-items: center; height: 100vh; margin: 0; }
        .card { background: #fff; padding: 32px; border-radius: 8px; box-shadow: 0 2px 8px rgba(0,0,0,.1); width: 320px; }
        h1 { font-size: 20px; margin: 0 0 20px; }
        label { display: block; font-size: 13px; color: #555; margin-bottom: 4px; }
        input { width: 100%; padding: 8px; margin-bottom: 14px; border: 1px solid #ccc; border-radius: 4px; box-sizing: border-box; }
        button { width: 100%; padding: 10px; background: #2d6cdf; color: #fff; border: 0; border-radius: 4px; cursor: pointer; }
        .error { color: #c0392b; font-size: 13px; margin-bottom: 10px; min-height: 16px; }
    </style>
</head>
<body>
    <div class="card">
        <h1>Warehouse Dashboard</h1>
        <div class="error" id="error"></div>
        <form id="login-form">
            <label for="username">Username</label>
            <input id="username" autocomplete="username" required>
            <label for="password">Password</label>
            <input id="password" type="password" autocomplete="current-password" required>
            <button type="submit">Sign in</button>
        </form>
    </div>

    <script>
        document.getElementById('login-form').addEventListener('submit', async (e) => {
            e.preventDefault();
            const errEl = document.getElementById('error');
            errEl.textContent = '';
            try {
                const res = await fetch('/api/auth/login', {
                    method: 'POST',
                    headers: { 'Content-Type': 'application/json' },
                    body: JSON.stringify({
                        username: document.getElementById('username').value,
                        password: document.getElementById('password').value,
                    }),
                });
                const data = await res.json();
                if (res.ok && data.ok) {
                    window.location.href = '/dashboard';
                } else {
                    errEl.textContent = data.message || 'Login failed';
                }
            } catch (e) {
                errEl.textContent = 'Could not reach the server';
            }
        });
    </script>
</body>
</html>`
