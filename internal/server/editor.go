package server

// editorPage is an in-browser GraphiQL editor that posts queries back to the
// URL it was loaded from, so graph, variant and apiKey carry over.
const editorPage = `<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>graphproxy</title>
    <link rel="stylesheet" href="https://unpkg.com/graphiql@0.16/graphiql.css" />
    <style>
      body {
        height: 100%;
        margin: 0;
        width: 100%;
        overflow: hidden;
      }
      #graphiql {
        height: 100vh;
      }
    </style>
    <script src="https://unpkg.com/react@16/umd/react.production.min.js"></script>
    <script src="https://unpkg.com/react-dom@16/umd/react-dom.production.min.js"></script>
    <script src="https://unpkg.com/graphiql@0.16/graphiql.js"></script>
  </head>
  <body>
    <div id="graphiql">Loading&hellip;</div>
    <script>
      function fetcher(params) {
        return fetch(window.location.href, {
          method: 'post',
          headers: {
            Accept: 'application/json',
            'Content-Type': 'application/json'
          },
          body: JSON.stringify(params)
        })
          .then(function (response) {
            return response.text();
          })
          .then(function (body) {
            try {
              return JSON.parse(body);
            } catch (error) {
              return body;
            }
          });
      }

      ReactDOM.render(React.createElement(GraphiQL, { fetcher: fetcher }), document.getElementById('graphiql'));
    </script>
  </body>
</html>
`
