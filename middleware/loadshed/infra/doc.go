// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - RedisStore: contador, snapshot e fila compartilhados no Redis
//   - MemoryStore: os mesmos contratos em memória (testes, instância única)
//   - PostgresLoans / MemoryLoans: fonte de verdade dos empréstimos
//   - ThrottleStore: token bucket por solicitante usando golang.org/x/time/rate
//   - ChanPool: semáforo simples para limite de requisições em voo
//   - RedisStatsStore / MemoryStatsStore: estatísticas da API
//   - PromObserver: métricas Prometheus
package infra
