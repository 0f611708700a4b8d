package bad

const QGood = `--sql 1b4e28ba-2fa1-11d2-883f-0016d3cca427
select 1;
`

const QCopied = `--sql 1b4e28ba-2fa1-11d2-883f-0016d3cca427
select 2;
`

const QUnmarked = `select 3;`

const helperText = `select this is not a statement`
