package face

// facePage is the whole face UI: two eyes and a mouth driven by state
// updates pushed over the websocket. Inlined so the binary has no asset
// directory to ship.
const facePage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Kotone</title>
<style>
  html, body {
    margin: 0; height: 100%;
    background: #101018;
    display: flex; align-items: center; justify-content: center;
    font-family: sans-serif;
  }
  #face { text-align: center; }
  .eyes { display: flex; gap: 120px; justify-content: center; }
  .eye {
    width: 90px; height: 90px; border-radius: 50%;
    background: #7fd4ff;
    transition: background 0.25s, height 0.25s, border-radius 0.25s;
  }
  .mouth {
    width: 140px; height: 14px; margin: 70px auto 0;
    border-radius: 7px;
    background: #7fd4ff;
    transition: background 0.25s, height 0.25s;
  }
  #label { color: #445; margin-top: 60px; font-size: 14px; letter-spacing: 2px; }

  .listening .eye { background: #7dffa5; }
  .listening .mouth { background: #7dffa5; }
  .speaking .eye { background: #ffd37d; }
  .speaking .mouth { background: #ffd37d; animation: talk 0.35s infinite alternate; }
  .error .eye { background: #ff7d7d; height: 14px; border-radius: 7px; }
  .error .mouth { background: #ff7d7d; }
  .idle .eye { animation: blink 5s infinite; }

  @keyframes talk { from { height: 10px; } to { height: 34px; } }
  @keyframes blink {
    0%, 94%, 100% { height: 90px; }
    97% { height: 8px; }
  }
</style>
</head>
<body>
<div id="face" class="idle">
  <div class="eyes"><div class="eye"></div><div class="eye"></div></div>
  <div class="mouth"></div>
  <div id="label">idle</div>
</div>
<script>
  const face = document.getElementById('face');
  const label = document.getElementById('label');

  function setState(state) {
    face.className = state;
    label.textContent = state;
  }

  function connect() {
    const ws = new WebSocket('ws://' + location.host + '/ws/state');
    ws.onmessage = (ev) => {
      try { setState(JSON.parse(ev.data).state); } catch (e) {}
    };
    ws.onclose = () => setTimeout(connect, 1000);
  }
  connect();
</script>
</body>
</html>
`
