package endpoints

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// indexPage is a minimal built-in frontend: upload form, live queue and
// result lists driven by /files and /ws. Deployments with a real UI replace
// it behind a reverse proxy.
const indexPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Verbatim</title>
<style>
body { font-family: sans-serif; max-width: 48rem; margin: 2rem auto; }
li { margin: 0.4rem 0; }
progress { width: 12rem; vertical-align: middle; }
</style>
</head>
<body>
<h1>Verbatim</h1>
<form id="upload">
  <input type="file" name="file" required>
  <input type="text" name="language" placeholder="language (de)" size="10">
  <button type="submit">Upload</button>
  <div><textarea name="hotwords" placeholder="hotwords, one per line" rows="3" cols="40"></textarea></div>
</form>
<h2>Queue</h2><ul id="queue"></ul>
<h2>Results</h2><ul id="results"></ul>
<script>
async function refresh() {
  const res = await fetch("/files");
  if (!res.ok) return;
  const data = await res.json();
  const queue = document.getElementById("queue");
  const results = document.getElementById("results");
  queue.innerHTML = "";
  results.innerHTML = "";
  for (const f of data.files || []) {
    const li = document.createElement("li");
    if (f.state === "done") {
      li.innerHTML = f.file_name +
        ' <a href="/download/editor/' + encodeURIComponent(f.file_name) + '">html</a>' +
        ' <a href="/download/srt/' + encodeURIComponent(f.file_name) + '">srt</a>' +
        ' <button onclick="openEditor(\'' + f.file_name + '\')">edit</button>' +
        ' <button onclick="del(\'' + f.file_name + '\')">delete</button>';
      results.appendChild(li);
    } else if (f.state === "errored") {
      li.textContent = f.file_name + ": " + f.message + " ";
      const b = document.createElement("button");
      b.textContent = "delete";
      b.onclick = () => del(f.file_name);
      li.appendChild(b);
      results.appendChild(li);
    } else {
      li.innerHTML = f.file_name + " <progress max='1' value='" + (f.progress || 0) + "'></progress> " +
        (f.message || "") +
        ' <button onclick="del(\'' + f.file_name + '\')">cancel</button>';
      queue.appendChild(li);
    }
  }
}
async function del(name) {
  await fetch("/files/" + encodeURIComponent(name), { method: "DELETE" });
  refresh();
}
async function openEditor(name) {
  const res = await fetch("/editor/open/" + encodeURIComponent(name), { method: "POST" });
  if (res.ok) window.location = "/editor";
}
document.getElementById("upload").addEventListener("submit", async (e) => {
  e.preventDefault();
  const res = await fetch("/upload", { method: "POST", body: new FormData(e.target) });
  if (!res.ok) {
    const body = await res.json().catch(() => ({}));
    alert(body.error || "upload failed");
  }
  refresh();
});
const proto = window.location.protocol === "https:" ? "wss://" : "ws://";
const sock = new WebSocket(proto + window.location.host + "/ws");
sock.onmessage = () => refresh();
refresh();
</script>
</body>
</html>
`

// HandleIndex serves the main page.
func HandleIndex() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexPage))
	}
}
