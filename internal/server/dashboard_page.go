package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// dashboardPageHandler serves the dashboard shell. All data loads through
// /api/* from the browser; the edge gate guarantees a passing session
// cookie before this handler runs.
func dashboardPageHandler(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, dashboardPageHTML)
}

const dashboardPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Warehouse Dashboard</title>
    <style>
        body { font-family: -apple-system, sans-serif; background: #f4f5f7; margin: 0; }
        header { background: #1f2a44; color: #fff; padding: 12px 20px; display: flex; justify-content: space-between; align-items: center; }
        header h1 { font-size: 16px; margin: 0; }
        header button { background: transparent; color: #aab; border: 1px solid #667; border-radius: 4px; padding: 4px 10px; cursor: pointer; }
        main { padding: 20px; }
        .panel { background: #fff; border-radius: 8px; padding: 16px; margin-bottom: 16px; box-shadow: 0 1px 4px rgba(0,0,0,.08); }
        .panel h2 { font-size: 14px; margin: 0 0 10px; color: #333; }
        pre { background: #f8f9fa; padding: 10px; overflow: auto; font-size: 12px; }
        #live { color: #2d6cdf; font-size: 12px; }
    </style>
</head>
<body>
    <header>
        <h1>Warehouse Dashboard</h1>
        <div>
            <span id="user"></span>
            <button id="logout">Sign out</button>
        </div>
    </header>
    <main>
        <div class="panel">
            <h2>Live events <span id="live">connecting...</span></h2>
            <pre id="events">(none yet)</pre>
        </div>
        <div class="panel">
            <h2>Rooms</h2>
            <pre id="rooms">Loading...</pre>
        </div>
    </main>

    <script>
        async function load(url, elementId) {
            const el = document.getElementById(elementId);
            try {
                const res = await fetch(url);
                el.textContent = JSON.stringify(await res.json(), null, 2);
            } catch (e) {
                el.textContent = 'ERROR: ' + e.message;
            }
        }

        fetch('/api/auth/me').then(r => r.json()).then(data => {
            if (data.user) document.getElementById('user').textContent = data.user.name || data.user.username || '';
        }).catch(() => {});

        document.getElementById('logout').addEventListener('click', async () => {
            await fetch('/api/auth/logout', { method: 'POST' });
            window.location.href = '/login';
        });

        const params = new URLSearchParams(window.location.search);
        const scope = 'company=' + (params.get('company') || '') + '&branch=' + (params.get('branch') || '');
        load('/api/rooms?' + scope, 'rooms');

        const proto = window.location.protocol === 'https:' ? 'wss:' : 'ws:';
        const ws = new WebSocket(proto + '//' + window.location.host + '/ws');
        ws.onopen = () => { document.getElementById('live').textContent = 'connected'; };
        ws.onclose = () => { document.getElementById('live').textContent = 'disconnected'; };
        ws.onmessage = (msg) => {
            const el = document.getElementById('events');
            el.textContent = msg.data + '\n' + (el.textContent === '(none yet)' ? '' : el.textContent);
        };
    </script>
</body>
</html>`
