// Package application contém os casos de uso do faucet: criação de pool, os
// saques (primeiro e subsequentes) e a proteção de entrada da API.
//
// Ele depende apenas de domain (e do deriver de autoridade) e não conhece
// net/http. Cada operação do Engine roda inteira dentro de um
// domain.Ledger.Update: verificação, transferência e atualização do registro
// confirmam juntas ou não acontecem.
//
// Throttle.Decide(key) e Admission.Acquire(ctx) são as regras da porta da
// frente (rajada por cliente e saques simultâneos).
package application
