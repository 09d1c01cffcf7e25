package graph

// Mint transaction page for a specific mint, newest first.
const queryMintTransactions = `
  query QueryAllTokenMintForChart($mint: String!, $offset: Int!, $first: Int!) {
    allMintTokenEntities(
      condition: { mint: $mint }
      offset: $offset
      first: $first
      orderBy: TIMESTAMP_DESC
    ) {
      nodes {
        timestamp
        mintSizeEpoch
        mintFee
        currentEra
        currentEpoch
      }
    }
  }
`

// Single mint registration by address.
const queryMintByAddress = `
  query GetMintByAddress($mint: String!) {
    allInitializeTokenEventEntities(
      condition: { mint: $mint }
      first: 1
    ) {
      nodes {
        mint
        tokenName
        tokenSymbol
        feeRate
      }
    }
  }
`

// All mint registrations.
const queryAllMints = `
  query GetAllMints {
    allInitializeTokenEventEntities {
      nodes {
        mint
        tokenName
        tokenSymbol
        feeRate
      }
      totalCount
    }
  }
`
