package artifacts

import (
	"fmt"
	"html/template"
	"strings"

	"verbatim/internal/transcribe"
)

// PlayerTag is the media element the editor page carries. The server-side
// editor swaps its empty src for a served media URL; the downloaded editor
// gets the media embedded as a data URL instead.
const PlayerTag = `<video id="player" width="100%" style="max-height: 320px" src="" type="video/MP4" controls="controls" position="sticky"></video>`

// viewerTemplate is the minimal self-contained editor page. Its structure is
// load-bearing: the </nav> marker and the "var fileName = " assignment frame
// the editable transcript region that the save/merge round-trip splices.
var viewerTemplate = template.Must(template.New("viewer").Parse(`<!DOCTYPE html>
<html lang="{{.Language}}">
<head>
<meta charset="utf-8">
<title>{{.FileName}}</title>
<style>
body { font-family: sans-serif; margin: 0; }
nav { position: sticky; top: 0; background: #0070b4; color: #fff; padding: 8px; }
nav a { color: #fff; margin-right: 12px; }
.segment { padding: 4px 12px; cursor: pointer; }
.segment.active { background: #e3f2fd; }
.speaker { font-weight: bold; margin-right: 6px; }
</style>
</head>
<body>
<nav>
<a href="#" onclick="downloadClick()">Download</a>
<a href="#" id="viewer-link" onclick="viewerClick()" class="btn btn-primary">Create viewer</a>
</nav>
` + PlayerTag + `
<div id="transcript" contenteditable="true">
{{- range .Segments}}
<p class="segment" data-start="{{printf "%.3f" .Start}}" data-end="{{printf "%.3f" .End}}">{{if .Speaker}}<span class="speaker">{{.Speaker}}</span>{{end}}<span class="text">{{.Text}}</span></p>
{{- end}}
</div>
<script>
var fileName = "{{.FileName}}";
var player = document.getElementById("player");
document.querySelectorAll(".segment").forEach(function (seg) {
    seg.addEventListener("click", function () {
        player.currentTime = parseFloat(seg.dataset.start);
        player.play();
    });
});
player.addEventListener("timeupdate", function () {
    document.querySelectorAll(".segment").forEach(function (seg) {
        var active = player.currentTime >= parseFloat(seg.dataset.start) &&
            player.currentTime < parseFloat(seg.dataset.end);
        seg.classList.toggle("active", active);
    });
});
function downloadClick() {
    var blob = new Blob([document.documentElement.outerHTML], { type: "text/html" });
    var a = document.createElement("a");
    a.href = URL.createObjectURL(blob);
    a.download = fileName + ".html";
    a.click();
}
function viewerClick() {
    document.getElementById("transcript").setAttribute("contenteditable", "false");
}
</script>
</body>
</html>
`))

type viewerData struct {
	FileName string
	Language string
	Segments []transcribe.Segment
}

// CreateViewer renders the interactive editor page for a finished transcript.
func CreateViewer(segments []transcribe.Segment, fileName, language string) (string, error) {
	var b strings.Builder
	err := viewerTemplate.Execute(&b, viewerData{
		FileName: fileName,
		Language: language,
		Segments: segments,
	})
	if err != nil {
		return "", fmt.Errorf("render viewer: %w", err)
	}
	return b.String(), nil
}

// InjectMediaSource points the editor's player at a served media URL for the
// server-side editor view.
func InjectMediaSource(content, mediaURL string) string {
	replaced := strings.Replace(PlayerTag, `src=""`, fmt.Sprintf(`src="%s"`, mediaURL), 1)
	return strings.Replace(content, PlayerTag, replaced, 1)
}
