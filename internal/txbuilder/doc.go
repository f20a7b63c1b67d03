package txbuilder

// Usage example (not compiled):
//
//  est := txbuilder.NewEstimator(gateway)
//  fees, err := est.Fees(ctx)
//  if err != nil { ... }
//  gas, err := est.EstimateGasLimit(ctx, msg)
//  if err != nil { ... } // fall back to a fixed limit
//
//  builder := txbuilder.NewBuilder(chainID)
//  tx, err := builder.Build(to, value, data, txbuilder.BuildParams{
//      Nonce: nonce, GasLimit: gas, Fee: fees,
//  })
//  signed, err := builder.Sign(tx, key)
//  // send signed tx
//
