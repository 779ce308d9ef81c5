package rod

// HTML fixtures for the browser tests.
const (
	BasicHTML = `<!DOCTYPE html>
<html>
<head><title>Test Page</title></head>
<body>
	<h1>Hello World</h1>
</body>
</html>`

	FormHTML = `<!DOCTYPE html>
<html>
<body>
	<form id="testForm">
		<input id="username" type="text" name="username" />
		<input id="password" type="password" name="password" />
		<button id="submit" type="submit">Submit</button>
	</form>
</body>
</html>`

	InteractiveHTML = `<!DOCTYPE html>
<html>
<body>
	<button id="btn">Click Me</button>
	<div id="result"></div>
	<script>
		document.getElementById('btn').addEventListener('click', function() {
			document.getElementById('result').textContent = 'Clicked!';
		});
	</script>
</body>
</html>`

	RichUIHTML = `<!DOCTYPE html>
<html>
<body>
	<button id="btn1" aria-label="First Button">Button 1</button>
	<button id="btn2" role="button">Button 2</button>
	<input id="input1" type="text" placeholder="Enter text" />
	<textarea id="textarea1"></textarea>
	<a href="/page1" id="link1">Link 1</a>
	<a href="/page2" id="link2" aria-label="Second Link">Link 2</a>
	<div role="button" id="divBtn" data-tooltip="Tooltip">Div Button</div>
</body>
</html>`

	ScrollableHTML = `<!DOCTYPE html>
<html>
<body style="height: 5000px;">
	<h1 id="top">Top of Page</h1>
	<div style="margin-top: 2000px;" id="middle">Middle</div>
	<div style="margin-top: 2000px;" id="bottom">Bottom</div>
</body>
</html>`

	// EditorHTML puts a contenteditable host over the top-left quarter of the
	// viewport and counts the input events it receives.
	EditorHTML = `<!DOCTYPE html>
<html>
<body style="margin:0">
	<div id="editor" contenteditable="true"
		style="position:fixed;left:0;top:0;width:50vw;height:50vh">Draft: </div>
	<div id="inputs" style="position:fixed;right:0;bottom:0">0</div>
	<script>
		var inputs = 0;
		document.getElementById('editor').addEventListener('input', function() {
			inputs++;
			document.getElementById('inputs').textContent = String(inputs);
		});
	</script>
</body>
</html>`

	// DragHTML has a box in the bottom-left of the viewport. A press on the box
	// followed by a release anywhere records the release point in #drop.
	DragHTML = `<!DOCTYPE html>
<html>
<body style="margin:0">
	<div id="box" style="position:fixed;left:0;top:50vh;width:20vw;height:50vh;background:#39f"></div>
	<div id="drop"></div>
	<script>
		var dragging = false;
		document.getElementById('box').addEventListener('mousedown', function() {
			dragging = true;
		});
		document.addEventListener('mouseup', function(e) {
			if (!dragging) return;
			dragging = false;
			document.getElementById('drop').textContent = e.clientX + ',' + e.clientY;
		});
	</script>
</body>
</html>`
)
