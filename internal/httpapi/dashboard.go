package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) dashboard(c *gin.Context) {
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(dashboardHTML))
}

// dashboardHTML renders holdings and net worth, refetching on every delta from /ledger/stream.
const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>papertrade</title>
<meta name="viewport" content="width=device-width, initial-scale=1">
<style>
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; background: #0f1115; color: #e6e6e6; margin: 0; padding: 24px; }
  h1 { font-size: 20px; margin: 0 0 16px; color: #7d56f4; }
  .cards { display: flex; gap: 16px; margin-bottom: 24px; }
  .card { background: #181b22; border-radius: 8px; padding: 16px 20px; min-width: 160px; }
  .card .label { font-size: 12px; color: #8a8f98; text-transform: uppercase; }
  .card .value { font-size: 22px; margin-top: 4px; }
  table { width: 100%; border-collapse: collapse; background: #181b22; border-radius: 8px; overflow: hidden; }
  th, td { padding: 10px 14px; text-align: right; }
  th:first-child, td:first-child, th:nth-child(2), td:nth-child(2) { text-align: left; }
  th { font-size: 12px; color: #8a8f98; text-transform: uppercase; border-bottom: 1px solid #2a2e37; }
  tr + tr td { border-top: 1px solid #22262e; }
  .loss { color: #ef5350; }
  .gain { color: #73f59f; }
  #status { font-size: 12px; color: #8a8f98; margin-top: 12px; }
</style>
</head>
<body>
<h1>papertrade</h1>
<div class="cards">
  <div class="card"><div class="label">Cash</div><div class="value" id="cash">-</div></div>
  <div class="card"><div class="label">Stocks</div><div class="value" id="stocks">-</div></div>
  <div class="card"><div class="label">Net worth</div><div class="value" id="networth">-</div></div>
</div>
<table>
  <thead><tr><th>Symbol</th><th>Name</th><th>Qty</th><th>Avg cost</th><th>Price</th><th>Change</th><th>Market value</th></tr></thead>
  <tbody id="holdings"><tr><td colspan="7">loading...</td></tr></tbody>
</table>
<div id="status">connecting...</div>
<script>
const usd = new Intl.NumberFormat("en-US", { style: "currency", currency: "USD" });

async function refresh() {
  const [holdings, summary] = await Promise.all([
    fetch("/portfolioData").then(r => r.json()),
    fetch("/networth").then(r => r.json()),
  ]);
  document.getElementById("cash").textContent = usd.format(summary.balance);
  document.getElementById("stocks").textContent = usd.format(summary.totalMarketValue);
  document.getElementById("networth").textContent = usd.format(summary.netWorth);

  const body = document.getElementById("holdings");
  body.innerHTML = "";
  if (!holdings.length) {
    body.innerHTML = '<tr><td colspan="7">No holdings</td></tr>';
    return;
  }
  for (const h of holdings) {
    const tr = document.createElement("tr");
    // change is average cost minus price, so a positive value is a loss
    const cls = h.change > 0 ? "loss" : (h.change < 0 ? "gain" : "");
    const cells = [h.symbol, h.name, h.quantity, usd.format(h.averageCostPerShare),
      usd.format(h.currentPrice), usd.format(h.change), usd.format(h.marketValue)];
    cells.forEach((v, i) => {
      const td = document.createElement("td");
      td.textContent = v;
      if (i === 5 && cls) td.className = cls;
      tr.appendChild(td);
    });
    body.appendChild(tr);
  }
}

function connect() {
  const status = document.getElementById("status");
  const es = new EventSource("/ledger/stream");
  es.onopen = () => { status.textContent = "live"; };
  es.addEventListener("delta", () => refresh().catch(console.error));
  es.onerror = () => { status.textContent = "stream unavailable, polling"; };
}

refresh().catch(console.error);
connect();
setInterval(() => refresh().catch(console.error), 30000);
</script>
</body>
</html>
`
