// Package domain define os contratos e tipos do faucet: pool, vault, registro de
// cooldown, ledger transacional e as provas de autoridade.
//
// Este pacote não depende de net/http nem de implementações concretas de ledger.
// A intenção é permitir testes de unidade puros e desacoplar as regras de
// distribuição dos detalhes de infraestrutura (memória, Redis, Postgres).
package domain
