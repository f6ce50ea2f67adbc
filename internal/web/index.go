package web

// Single page view of holdings, refreshed on every balance event.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>coinpurse</title>
  <style>
    :root { --ink:#111111; --ink-mid:#4d4d4d; --panel:#f6f6f6; }
    * { box-sizing:border-box; }
    body {
      margin:0;
      min-height:100vh;
      display:flex;
      align-items:center;
      justify-content:center;
      padding:2rem;
      font-family:'Space Mono','JetBrains Mono',monospace;
      color:var(--ink);
    }
    #app {
      width:min(560px, 96vw);
      background:var(--panel);
      border:3px solid var(--ink);
      padding:2rem;
      box-shadow:12px 12px 0 rgba(0,0,0,.15);
    }
    header { display:flex; justify-content:space-between; align-items:center; }
    .status { font-size:.65rem; text-transform:uppercase; letter-spacing:.1em; color:var(--ink-mid); }
    table { width:100%; border-collapse:collapse; margin-top:1.5rem; }
    th, td { text-align:right; padding:.4rem .2rem; border-bottom:1px dashed rgba(0,0,0,.15); }
    th:first-child, td:first-child { text-align:left; }
    .total { margin-top:1.2rem; font-size:1.4rem; font-weight:700; }
    .stale { margin-top:.6rem; font-size:.7rem; color:#d7263d; }
    .empty { margin-top:1.5rem; color:var(--ink-mid); }
    td img { width:18px; height:18px; vertical-align:middle; margin-right:.4rem; }
  </style>
</head>
<body>
  <div id="app">
    <header>
      <strong>coinpurse</strong>
      <span id="sse-status" class="status">Connecting…</span>
    </header>
    <div id="content"></div>
  </div>
<script>
const content = document.getElementById('content');
const statusEl = document.getElementById('sse-status');
const usd = new Intl.NumberFormat('en-US', { style:'currency', currency:'USD' });

async function load(){
  const res = await fetch('/api/holdings');
  if(!res.ok){ content.textContent = 'Failed to load holdings'; return; }
  const data = await res.json();
  const symbols = Object.keys(data.holdings || {});
  if(symbols.length === 0){
    content.innerHTML = '<div class="empty">No holdings yet</div>';
    return;
  }
  let rows = '';
  for(const s of symbols){
    const h = data.holdings[s];
    const value = h.value === null ? 'n/a' : usd.format(parseFloat(h.value));
    const logo = (data.logos || {})[s];
    const icon = logo ? '<img src="' + logo + '" alt="" />' : '';
    rows += '<tr><td>' + icon + s + '</td><td>' + h.amount + '</td><td>' + value + '</td></tr>';
  }
  content.innerHTML =
    '<table><thead><tr><th>Symbol</th><th>Amount</th><th>Value</th></tr></thead><tbody>' + rows + '</tbody></table>' +
    '<div class="total">' + usd.format(parseFloat(data.total)) + '</div>' +
    (data.stale ? '<div class="stale">Rates are stale</div>' : '');
}

function connectSSE(){
  const source = new EventSource('/balance/stream');
  statusEl.textContent = 'live';
  source.addEventListener('balance', () => { load(); });
  source.addEventListener('error', () => {
    statusEl.textContent = 'Reconnecting…';
    source.close();
    setTimeout(connectSSE, 2000);
  });
}

load();
connectSSE();
</script>
</body>
</html>`
