package playground

// Content of empty buffers.
const (
	DefaultCSS = `/* Try editing this CSS! */
body {
  font-family: system-ui, sans-serif;
  padding: 20px;
  background: #f5f5f5;
}

.container {
  background: white;
  border-radius: 8px;
  padding: 20px;
  box-shadow: 0 2px 4px rgba(0,0,0,0.1);
}

h1 {
  color: #333;
  margin-top: 0;
}

p {
  color: #666;
  line-height: 1.6;
}`

	DefaultHTML = `<!-- Try editing this HTML! -->
<div class="container">
  <h1>Hello, SeeSS!</h1>
  <p>
    Edit the CSS and HTML on the left to see
    your changes in real-time.
  </p>
</div>`
)
