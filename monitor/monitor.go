package monitor

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

const monitorPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <title>Photo QC Monitor</title>
  <style>
    body { background: #111827; color: #e5e7eb; font-family: system-ui, sans-serif; padding: 20px; }
    #logs { background: #030712; padding: 1rem; border-radius: 8px; max-height: 600px; overflow-y: auto; white-space: pre-wrap; font-family: monospace; font-size: 0.8rem; }
    button { padding: 0.5rem 1rem; border: none; border-radius: 6px; background: #4f46e5; color: #fff; cursor: pointer; }
  </style>
</head>
<body>
  <h1>Photo QC Monitor</h1>
  <p id="status">Status: checking...</p>
  <button onclick="live = !live; this.textContent = live ? 'Pause' : 'Resume'">Pause</button>
  <pre id="logs">Loading logs...</pre>
  <script>
    let live = true;
    const token = new URLSearchParams(location.search).get('token') || '';
    function refresh() {
      fetch('/api/v1/health').then(r => r.json())
        .then(d => { document.getElementById('status').textContent = 'Status: ' + (d.success ? 'online' : 'offline'); })
        .catch(() => { document.getElementById('status').textContent = 'Status: offline'; });
      if (!live) return;
      fetch('/logs?token=' + encodeURIComponent(token)).then(r => r.text()).then(t => {
        const el = document.getElementById('logs');
        el.textContent = t;
        el.scrollTop = el.scrollHeight;
      });
    }
    refresh();
    setInterval(refresh, %d);
  </script>
</body>
</html>`

// refreshMillis is how often the monitor page polls health and logs.
const refreshMillis = 5000

func tokenMatches(got, want string) bool {
	return want != "" && subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// RegisterMonitorPage serves a small HTML page tailing the log file.
// It is disabled when token is empty.
func RegisterMonitorPage(router *gin.Engine, token string) {
	router.GET("/monitor", func(c *gin.Context) {
		if !tokenMatches(c.Query("token"), token) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(fmt.Sprintf(monitorPage, refreshMillis)))
	})
}

// RegisterLogsRoute exposes the raw log file behind a shared token.
func RegisterLogsRoute(router *gin.Engine, logPath, token string) {
	router.GET("/logs", func(c *gin.Context) {
		if !tokenMatches(c.Query("token"), token) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		logData, err := os.ReadFile(logPath)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to read log"})
			return
		}
		c.Data(http.StatusOK, "text/plain; charset=utf-8", logData)
	})
}
