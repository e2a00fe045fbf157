// Package faucet expõe o engine de distribuição por HTTP (chi) e traz os
// middlewares da porta da frente.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (pool, saques, throttle, admissão) sem net/http
//   - infra: implementações concretas (ledgers, token bucket, semáforo, stats)
//   - faucet (este pacote): rotas, autenticação por assinatura e tradução de erro
//     para status/headers
//
// Fluxo de um saque:
//
//  1. Throttle por cliente (IP/header/XFF); bloqueado => 429
//  2. Limite de concorrência; sem vaga no timeout => 503
//  3. Verifica a assinatura ed25519 do corpo pelo requester; inválida => 401
//  4. Chama o engine; o erro de domínio vira status (ex.: cooldown => 429)
//
// Variáveis de ambiente do binário (cmd/faucetd) controlam o comportamento,
// como RATE_RPS, RATE_BURST, CONCURRENCY_MAX e CONCURRENCY_TIMEOUT.
package faucet
